package scene

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/assetpipe/asset"
)

type BatchResult struct {
	Success int
	Failed  int
	Errors  []error
}

func (r *BatchResult) add(err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, err)
	} else {
		r.Success++
	}
}

func (r BatchResult) String() string {
	return fmt.Sprintf("%d success %d fail", r.Success, r.Failed)
}

// ProcessAll decodes every file under root whose base name matches pattern
// (case insensitive, filepath.Match syntax) without touching the scene.
// Failures are counted and the walk goes on. ctx is checked between files;
// on cancellation the partial result is returned with ctx.Err().
func (m *Manager) ProcessAll(ctx context.Context, root, pattern string) (BatchResult, error) {
	var result BatchResult
	pattern = strings.ToLower(pattern)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return result, m.fail(asset.Validationf("process", "bad pattern %q: %v", pattern, err))
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return asset.NewIOError("walk", path, err)
			}
			result.add(asset.NewIOError("walk", path, err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, strings.ToLower(d.Name())); !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err = m.processFile(path)
		result.add(err)

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if err != nil {
			log.Printf("[scene] %s: %v", rel, err)
		}
		m.Progress(fmt.Sprintf("[%d/%d] %s", result.Success, result.Failed, rel))
		return nil
	})

	if err != nil {
		if ctx.Err() == nil {
			m.fail(err)
		}
		return result, err
	}
	m.Progress(fmt.Sprintf("%s processing complete. %v", pattern, result))
	return result, nil
}

func (m *Manager) processFile(path string) error {
	imp, err := m.Registry.Detect(path)
	if err != nil {
		return err
	}
	ctx := m.decodeContext()
	if _, err := imp.Import(ctx, path); err != nil {
		return errors.Wrapf(err, "%s", imp.Name())
	}
	m.warn(ctx.Warnings())
	return nil
}

// LoadConcurrent decodes paths on up to workers goroutines through the load
// cache and inserts the results into the scene on the calling goroutine, in
// the order of paths. A failed file is counted and skipped.
func (m *Manager) LoadConcurrent(ctx context.Context, paths []string, kind asset.Kind, workers int) (BatchResult, error) {
	if workers < 1 {
		workers = 1
	}
	entries := make([]*cacheEntry, len(paths))
	errs := make([]error, len(paths))
	fresh := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			imp, err := m.Registry.ImporterFor(path, kind)
			if err != nil {
				errs[i] = err
				return nil
			}
			entries[i], fresh[i], errs[i] = m.decode(imp, filepath.Dir(path), filepath.Base(path), false)
			return nil
		})
	}
	waitErr := g.Wait()

	var result BatchResult
	for i, path := range paths {
		if entries[i] == nil && errs[i] == nil {
			// never started because of cancellation
			continue
		}
		if fresh[i] {
			m.warn(entries[i].warnings)
		}
		err := errs[i]
		if err == nil {
			err = m.insert(entries[i].asset, entries[i].materials.Entries(), entries[i].textures)
		}
		if err != nil {
			result.add(m.fail(errors.Wrapf(err, "Can't load %q", path)))
			continue
		}
		result.add(nil)
		m.Progress(fmt.Sprintf("[%d/%d] %s", result.Success, result.Failed, filepath.Base(path)))
	}
	if result.Success != 0 {
		m.Change(ChangeMunge, SceneKey, nil)
	}
	if waitErr != nil {
		return result, waitErr
	}
	return result, ctx.Err()
}
