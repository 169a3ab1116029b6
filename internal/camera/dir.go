package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

var imageExts = []string{".jpg", ".jpeg", ".png"}

// Dir отдаёт файлы из папки по кругу. Нужен для стенда без камеры.
type Dir struct {
	path string

	mu   sync.Mutex
	next int
}

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := d.list()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrNoImage, d.path)
	}

	d.mu.Lock()
	name := files[d.next%len(files)]
	d.next++
	d.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (d *Dir) list() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.path, err)
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() {
			return "", false
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		return e.Name(), lo.Contains(imageExts, ext)
	})
	sort.Strings(names)
	return names, nil
}
