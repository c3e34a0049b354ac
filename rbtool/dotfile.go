package rbtool

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/safeopen"

	"github.com/benz9527/xrbtree/lib/infra"
)

// CreateDotFile creates (or truncates) the dot graph file beneath dir.
// The name must stay inside dir, so absolute paths and ".." are refused.
func CreateDotFile(dir, name string) (io.WriteCloser, error) {
	if len(strings.TrimSpace(name)) == 0 {
		return nil, infra.NewErrorStack("[rbheight] empty dot file name")
	}
	if len(dir) == 0 {
		dir = "."
	}
	if filepath.Ext(name) == "" {
		name += ".dot"
	}
	f, err := safeopen.OpenFileBeneath(dir, name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[rbheight] create dot file")
	}
	return f, nil
}
