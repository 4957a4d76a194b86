package streadmulti

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/nao1215/streadmulti/codec"
	"github.com/nao1215/streadmulti/domain/model"
	"go.uber.org/zap"
)

// Warning is a non-fatal diagnostic raised while enumerating sources
type Warning struct {
	// Path is the file the warning refers to
	Path string
	// Layer is the requested layer name
	Layer string
}

// String returns the warning message
func (w Warning) String() string {
	return fmt.Sprintf("layer %q not found in %s", w.Layer, w.Path)
}

// filterLayers narrows the sources of one container file to the requested
// layer. An empty request keeps every layer; a miss keeps none and returns a warning.
func filterLayers(path string, sources []model.SourceDescriptor, requested string) ([]model.SourceDescriptor, *Warning) {
	if requested == "" {
		return sources, nil
	}
	for _, src := range sources {
		if src.Layer == requested {
			return []model.SourceDescriptor{src}, nil
		}
	}
	return nil, &Warning{Path: path, Layer: requested}
}

// enumerateSources lists the sources of every file in order, applying the
// layer filter to container formats
func enumerateSources(ctx context.Context, files []*model.File, requested string, logger *zap.Logger) ([]model.SourceDescriptor, []Warning, error) {
	var (
		sources    []model.SourceDescriptor
		warnings   []Warning
		containers int
		matched    bool
	)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		c, err := codec.ForFormat(file.Format())
		if err != nil {
			return nil, nil, NewErrorContext("enumerate sources", file.Path()).Error(err)
		}
		descs, err := c.Sources(ctx, file.Path())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = errors.Join(ErrFileNotFound, err)
			}
			return nil, nil, NewErrorContext("enumerate sources", file.Path()).Error(err)
		}

		if requested != "" && file.Format() == model.FormatGeoPackage {
			containers++
			kept, warning := filterLayers(file.Path(), descs, requested)
			if warning != nil {
				logger.Warn("requested layer not found",
					zap.String("path", warning.Path),
					zap.String("layer", warning.Layer))
				warnings = append(warnings, *warning)
			} else {
				matched = true
			}
			descs = kept
		}
		sources = append(sources, descs...)
	}

	if requested != "" && containers > 0 && !matched {
		return nil, warnings, fmt.Errorf("%w: layer %q matched in none of %d GeoPackage files",
			ErrNoLayersFound, requested, containers)
	}
	return sources, warnings, nil
}
