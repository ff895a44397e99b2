package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mvp_sandbox_server/internal/types"
)

func TestApplyGuardrails_FileCountCap(t *testing.T) {
	var files []types.GeneratedFile
	for i := 0; i < MaxFiles+10; i++ {
		files = append(files, types.GeneratedFile{
			Filename: fmt.Sprintf("file%02d.txt", i),
			Content:  "x",
		})
	}

	bundle := ApplyGuardrails(files)
	require.Len(t, bundle, MaxFiles)
	// Truncation keeps the head of the list.
	require.Contains(t, bundle, "file00.txt")
	_, dropped := bundle[fmt.Sprintf("file%02d.txt", MaxFiles)]
	require.False(t, dropped)
}

func TestApplyGuardrails_ByteCap(t *testing.T) {
	big := strings.Repeat("a", MaxBundleBytes-10)
	files := []types.GeneratedFile{
		{Filename: "big.txt", Content: big},
		{Filename: "overflow.txt", Content: strings.Repeat("b", 100)},
		{Filename: "late.txt", Content: "never kept"},
	}

	bundle := ApplyGuardrails(files)
	require.Len(t, bundle, 1)
	require.Contains(t, bundle, "big.txt")
	require.LessOrEqual(t, bundle.TotalBytes(), MaxBundleBytes)
}

func TestApplyGuardrails_UnsafePaths(t *testing.T) {
	files := []types.GeneratedFile{
		{Filename: "../escape.txt", Content: "x"},
		{Filename: "/etc/passwd", Content: "x"},
		{Filename: "", Content: "x"},
		{Filename: "./ok.txt", Content: "x"},
		{Filename: "nested/dir/page.html", Content: "x"},
	}

	bundle := ApplyGuardrails(files)
	require.Len(t, bundle, 2)
	require.Contains(t, bundle, "ok.txt")
	require.Contains(t, bundle, "nested/dir/page.html")
}

func TestApplyGuardrails_DuplicatesKeepFirst(t *testing.T) {
	files := []types.GeneratedFile{
		{Filename: "index.html", Content: "first"},
		{Filename: "index.html", Content: "second"},
	}

	bundle := ApplyGuardrails(files)
	require.Equal(t, "first", bundle["index.html"])
}

func TestApplyGuardrailsBundle_Deterministic(t *testing.T) {
	input := make(types.Bundle)
	for i := 0; i < MaxFiles*2; i++ {
		input[fmt.Sprintf("f%03d.txt", i)] = "x"
	}

	first := ApplyGuardrailsBundle(input)
	require.Len(t, first, MaxFiles)
	// Sorted order means repeat runs keep the same survivors.
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ApplyGuardrailsBundle(input))
	}
	require.Contains(t, first, "f000.txt")
}
