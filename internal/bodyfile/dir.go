package bodyfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"block-bodies/internal/body"
)

// maxParallelLoads ограничивает число одновременно читаемых файлов
const maxParallelLoads = 8

// LoadDir загружает все файлы тел из каталога (без вложенных каталогов).
// Ключ результата - имя файла без расширения. Первая ошибка отменяет загрузку.
func LoadDir(ctx context.Context, dir string) (map[string]*body.Body, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("bodyfile: read dir %q: %w", dir, err)
	}

	var (
		mu     sync.Mutex
		bodies = make(map[string]*body.Body)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := FormatFromPath(entry.Name()); err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		key := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			b, err := Load(path)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if _, exists := bodies[key]; exists {
				return fmt.Errorf("bodyfile: duplicate body name %q in %q", key, dir)
			}
			bodies[key] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}
