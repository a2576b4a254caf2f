package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Skryldev/bpm-lab/domain/model"
)

var audioExtensions = func() map[string]bool {
	m := make(map[string]bool, len(model.SupportedExtensions))
	for _, ext := range model.SupportedExtensions {
		m[ext] = true
	}
	return m
}()

// IsAudioFile reports whether path has a supported extension (case-insensitive).
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover walks root and returns every regular file with a supported audio
// extension, sorted by relative path. Symlinks to regular files are included;
// symlinked directories below root are not descended into, but root itself
// may be a symlink. Unreadable subdirectories are skipped. A root that is
// missing or not a directory is an error. AbsPath stays under root as given.
func Discover(root string) ([]model.AudioFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	// WalkDir does not follow a symlinked root.
	walkRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	var files []model.AudioFile
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == walkRoot {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return err
		}
		files = append(files, model.AudioFile{AbsPath: filepath.Join(absRoot, rel), RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	target, err := os.Stat(path)
	return err == nil && target.Mode().IsRegular()
}
