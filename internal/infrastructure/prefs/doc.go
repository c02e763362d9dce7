// Package prefs provides process-wide key/value preferences backed by a
// YAML file.
//
// The store holds small string values that must survive restarts but live
// outside the relational database, most notably the applied schema
// version token consulted by the migration controller.
//
// Writes go to a temporary file that is renamed over the original, so a
// crash mid-write leaves the previous contents intact.
//
// Usage:
//
//	store, err := prefs.Open(filepath.Join(cacheDir, "recordstore-prefs.yaml"))
//	if err != nil {
//	    return err
//	}
//	version, ok := store.Get("DBVersion")
package prefs
