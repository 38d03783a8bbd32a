package core

import (
	"testing"

	"humans/testutil"
)

func TestCoreDoesNotImportTransports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.PrefixForbidden(
		testutil.ModulePath+"/internal/adapters",
		testutil.ModulePath+"/internal/blob",
		"github.com/gin-gonic/gin",
		"github.com/spf13/cobra",
		"net/http",
	), "the core service is transport agnostic")
}
