package memory

import (
	"testing"

	"fungiatlas/testutil"
)

func TestImportsAreContentOrStdlib(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ModuleImportsExcept("fungiatlas/internal/content"), "memory store depends only on content")
}
