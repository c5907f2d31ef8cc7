// Package deploykey provisions per-repository SSH deploy keys and performs
// the first clone through them.
package deploykey
