package graph

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/texmtlx/internal/parser"
)

// UDIMToken replaces the tile number in UDIM file paths.
const UDIMToken = "<UDIM>"

// DefaultJobToken replaces the job root prefix in file paths.
const DefaultJobToken = "$JOB"

// ResolvePath turns a source path into the file path an image node reads.
// The cache extension is applied first, then the first 4-digit group of the
// file name becomes <UDIM>, then the job root prefix is swapped for the job
// token. Separators are always forward slashes.
func (e *Engine) ResolvePath(src string, udim bool) string {
	p := strings.ReplaceAll(filepath.ToSlash(src), `\`, "/")

	if e.opts.ConvertToCache {
		p = strings.TrimSuffix(p, path.Ext(p)) + e.opts.CacheExt
	}

	if udim {
		dir, file := path.Split(p)
		if loc := parser.UDIMPattern.FindStringSubmatchIndex(file); loc != nil {
			file = file[:loc[2]] + UDIMToken + file[loc[3]:]
		}
		p = dir + file
	}

	if root := strings.TrimSuffix(strings.ReplaceAll(e.opts.JobRoot, `\`, "/"), "/"); root != "" {
		if p == root || strings.HasPrefix(p, root+"/") {
			p = e.opts.JobToken + p[len(root):]
		}
	}

	return p
}
