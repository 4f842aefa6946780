package vfs

import "path"

// clean normalizes p to an absolute, slash-separated form: "." and ".."
// resolved, duplicate separators collapsed, always rooted at "/". Paths are
// case-sensitive and there is no symlink concept (spec §3).
func clean(cwd, p string) string {
	if p == "" {
		p = "."
	}
	if !path.IsAbs(p) {
		p = path.Join(cwd, p)
	}
	return path.Clean("/" + p)
}

// parent returns the directory component of an already-cleaned path, or "/"
// for the root itself.
func parent(p string) string {
	d := path.Dir(p)
	if d == "" {
		return "/"
	}
	return d
}

// ancestors returns every proper ancestor directory of an already-cleaned
// path, root-first, not including p itself.
func ancestors(p string) []string {
	if p == "/" {
		return nil
	}
	var out []string
	for d := parent(p); ; d = parent(d) {
		out = append(out, d)
		if d == "/" {
			break
		}
	}
	// reverse so root comes first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
