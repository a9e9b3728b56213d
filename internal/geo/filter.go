// Package geo selects features from a dataset by delegating attribute
// filtering and format conversion to a Converter.
package geo

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/agentic-research/mapmaker/api"
	"github.com/agentic-research/mapmaker/internal/config"
	"github.com/agentic-research/mapmaker/internal/logging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// DefaultKey is the property filtered on when filter.key is empty.
const DefaultKey = "ADM0_A3"

const memoSize = 32

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter selects the configured features from a resolved dataset.
type Filter struct {
	conv Converter
	log  *zap.Logger
	memo *lru.Cache[string, *geojson.FeatureCollection]
}

// NewFilter wraps conv. Decoded collections are memoised per source file,
// format and where clause, so repeated builds in one process reuse them.
func NewFilter(conv Converter, log *zap.Logger) *Filter {
	memo, _ := lru.New[string, *geojson.FeatureCollection](memoSize)
	return &Filter{conv: conv, log: logging.OrNop(log), memo: memo}
}

// Select returns the features chosen by cfg's filter. Filter configuration
// errors are raised before the converter runs. With fresh set the converter
// always runs and its result replaces any memoised one.
func (f *Filter) Select(ctx context.Context, cfg *config.Resolved, fresh bool) (*geojson.FeatureCollection, error) {
	where, err := WhereClause(cfg.Spec.Parameters)
	if err != nil {
		return nil, err
	}
	return f.convert(ctx, cfg, where, fresh)
}

// Info returns the dataset's features, filtered by cfg when filtered is set.
func (f *Filter) Info(ctx context.Context, cfg *config.Resolved, filtered bool) (*geojson.FeatureCollection, error) {
	if filtered {
		return f.Select(ctx, cfg, false)
	}
	return f.convert(ctx, cfg, "", false)
}

func (f *Filter) convert(ctx context.Context, cfg *config.Resolved, where string, fresh bool) (*geojson.FeatureCollection, error) {
	req := Request{
		Source: cfg.Path(cfg.Derived.ShapeFile),
		Format: FormatGeoJSON,
		Where:  where,
	}
	key := memoKey(req)
	if key != "" && !fresh {
		if fc, ok := f.memo.Get(key); ok {
			f.log.Debug("Reusing converted features", zap.String("source", req.Source), zap.String("where", where))
			return fc, nil
		}
	}

	f.log.Debug("Converting", zap.String("source", req.Source), zap.String("where", where))
	fc, err := f.conv.Convert(ctx, req)
	if err != nil {
		return nil, api.Errorf(api.KindGeometryFilter, "convert %s: %w", req.Source, err)
	}
	if fc == nil {
		return nil, api.Errorf(api.KindGeometryFilter, "convert %s: no feature collection returned", req.Source)
	}
	if key != "" {
		f.memo.Add(key, fc)
	}
	f.log.Debug("Filtered features", zap.Int("features", len(fc.Features)))
	return fc, nil
}

// memoKey includes the source's size and mtime so a re-downloaded dataset is
// converted again. Sources that cannot be stat'ed are not memoised.
func memoKey(req Request) string {
	st, err := os.Stat(req.Source)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s|%d|%d|%s|%s", req.Source, st.Size(), st.ModTime().UnixNano(), req.Format, req.Where)
}

// WhereClause builds the attribute filter for params. An absent filter block
// or type "all" selects everything (empty clause).
func WhereClause(params api.Parameters) (string, error) {
	flt := params.Filter
	if flt == nil {
		return "", nil
	}
	key := flt.Key
	if key == "" {
		key = DefaultKey
	}

	var values []string
	switch strings.ToLower(strings.TrimSpace(flt.Type)) {
	case api.FilterAll:
		return "", nil
	case api.FilterCountries:
		values = params.Countries.Codes()
		if len(values) == 0 {
			return "", api.Errorf(api.KindFilterConfig,
				"cannot filter on countries with no countries specified - use \"type: all\"")
		}
	case api.FilterArray:
		values = flt.Array
		if len(values) == 0 {
			return "", api.Errorf(api.KindFilterConfig, "filter type \"array\" needs a non-empty filter.array")
		}
	default:
		return "", api.Errorf(api.KindFilterConfig, "unknown value for \"filter\": %q", flt.Type)
	}

	if !identRe.MatchString(key) {
		return "", api.Errorf(api.KindFilterConfig, "filter.key %q is not a valid attribute name", key)
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprintf("%s IN (%s)", key, strings.Join(quoted, ", ")), nil
}
