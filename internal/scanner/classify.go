package scanner

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/srcanalyze/internal/types"
)

var cppHeaderExts = map[string]bool{
	".h":   true,
	".hh":  true,
	".hpp": true,
	".hxx": true,
	".h++": true,
	".inl": true,
}

var cppSourceExts = map[string]bool{
	".c":   true,
	".cc":  true,
	".cpp": true,
	".cxx": true,
	".c++": true,
}

// Classify routes a path to an analyzer by its extension. It never touches
// the filesystem.
func Classify(path string) types.SourceKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case cppHeaderExts[ext]:
		return types.KindCppHeader
	case cppSourceExts[ext]:
		return types.KindCppSource
	case ext == ".java":
		return types.KindJavaSource
	default:
		return types.KindUnsupported
	}
}
