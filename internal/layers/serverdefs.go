package layers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

// ServerDefsQuery is appended to the target URL to fetch the layer list.
const ServerDefsQuery = "query?request=Json&var=geeServerDefs&is2d=t"

var (
	reVarHeader  = regexp.MustCompile(`^\s*var\s+\w+\s*=\s*`)
	reTrailingSC = regexp.MustCompile(`;\s*$`)
	reBareKey    = regexp.MustCompile(`([\[\{,])\s*(\w+)\s*:`)
)

// NormalizeServerDefs turns the backend's JavaScript assignment
// (`var geeServerDefs = {key : ...};`) into strict JSON.
func NormalizeServerDefs(raw []byte) []byte {
	out := reVarHeader.ReplaceAll(raw, nil)
	out = reTrailingSC.ReplaceAll(out, nil)
	return reBareKey.ReplaceAll(out, []byte(`${1}"${2}":`))
}

type serverDefs struct {
	DBType     *string    `json:"dbType"`
	Projection *string    `json:"projection"`
	Layers     []layerDef `json:"layers"`
}

type layerDef struct {
	ID          json.RawMessage `json:"id"`
	Label       string          `json:"label"`
	RequestType string          `json:"requestType"`
	Version     json.RawMessage `json:"version"`
	IsPng       bool            `json:"isPng"`
}

// ParseServerDefs builds the snapshot for targetURL from normalized
// server-definitions JSON. An unsupported database type yields an empty
// snapshot, not an error.
func ParseServerDefs(targetURL string, normalized []byte) (*Snapshot, error) {
	var defs serverDefs
	if err := json.Unmarshal(normalized, &defs); err != nil {
		return nil, fmt.Errorf("decode server defs: %w", err)
	}

	// Older backends omit dbType; only 2-D map databases carry a projection.
	dbType := DBType3D
	if defs.Projection != nil {
		dbType = DBType2D
	}
	if defs.DBType != nil {
		dbType = DBType(*defs.DBType)
	}
	projName := "flat"
	if defs.Projection != nil && *defs.Projection != "" {
		projName = *defs.Projection
	}
	proj := projection.ByName(projName)

	snap := &Snapshot{
		TargetURL:  targetURL,
		DBType:     dbType,
		Projection: proj,
		FetchedAt:  time.Now(),
		byName:     map[string]*Layer{},
	}
	if !dbType.Supported() {
		return snap, nil
	}

	namespace := targetNamespace(targetURL)
	for _, d := range defs.Layers {
		if dbType.Is3D() && d.Label != "Imagery" {
			continue
		}
		id, ok := scalarString(d.ID)
		if !ok {
			continue
		}
		version, _ := scalarString(d.Version)
		rt := RequestType(d.RequestType)
		if rt == "" {
			rt = RequestImageryMaps
		}
		l := &Layer{
			Name:        fmt.Sprintf("[%s]:%s", namespace, id),
			ID:          id,
			Label:       d.Label,
			TargetURL:   targetURL,
			Projection:  proj,
			RequestType: rt,
			DBType:      dbType,
			Version:     version,
			ArgNames:    rt.ArgNames(),
			IsPng:       d.IsPng,
		}
		l.format = l.DefaultFormat()
		snap.byName[l.Name] = l
	}
	snap.names = make([]string, 0, len(snap.byName))
	for n := range snap.byName {
		snap.names = append(snap.names, n)
	}
	sort.Strings(snap.names)
	return snap, nil
}

// scalarString renders a JSON string or number; null and absent are not ok.
func scalarString(raw json.RawMessage) (string, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", false
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", false
		}
		return out, true
	}
	return s, true
}

// targetNamespace is the target URL's path without the leading slash.
func targetNamespace(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return strings.Trim(targetURL, "/")
	}
	return strings.Trim(u.Path, "/")
}
