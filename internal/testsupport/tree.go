package testsupport

import (
	"fmt"
	"math/rand"

	"repolearn/internal/github"
)

// Blob returns a file tree entry.
func Blob(path string, size int64) github.TreeEntry {
	return github.TreeEntry{Path: path, Type: github.EntryBlob, Size: size}
}

// Dir returns a directory tree entry.
func Dir(path string) github.TreeEntry {
	return github.TreeEntry{Path: path, Type: github.EntryTree}
}

var (
	treeDirs = []string{"", "src/", "docs/", "app/", "lib/", "cmd/tool/", "node_modules/pkg/", "dist/", "a/b/c/", "a/b/c/d/e/", "vendor/x/"}
	treeBase = []string{"README.md", "main.go", "index.ts", "main.js", "guide.md", "package.json", "go.mod", "logo.png", "util.go", "notes.txt", "Makefile", "data.bin"}
)

// RandomTree builds a deterministic pseudo-random tree of n entries.
func RandomTree(seed int64, n int) []github.TreeEntry {
	rng := rand.New(rand.NewSource(seed))
	out := make([]github.TreeEntry, 0, n)
	for i := 0; i < n; i++ {
		dir := treeDirs[rng.Intn(len(treeDirs))]
		if rng.Intn(10) == 0 {
			out = append(out, Dir(dir+fmt.Sprintf("pkg%d", i)))
			continue
		}
		name := treeBase[rng.Intn(len(treeBase))]
		if rng.Intn(3) == 0 {
			name = fmt.Sprintf("f%d-%s", i, name)
		}
		out = append(out, Blob(dir+name, rng.Int63n(5000)))
	}
	return out
}

// Shuffled returns a permuted copy of entries.
func Shuffled(seed int64, entries []github.TreeEntry) []github.TreeEntry {
	out := make([]github.TreeEntry, len(entries))
	copy(out, entries)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
