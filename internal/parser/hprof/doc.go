// Package hprof loads Java HPROF heap dump files into a model.Snapshot.
//
// # Package Organization
//
//   - types.go: record and sub-record tags, format versions, the header
//   - reader.go: positioned big-endian reader over a buffer.ReadBuffer
//   - loader.go: record walker that feeds classes, objects, roots and
//     traces to the snapshot, then resolves it
//   - errors.go: sentinel errors
//
// Instances and arrays are not decoded while loading. The loader records
// the absolute offset of each object id and the snapshot decodes payloads
// from the same buffer on demand, so the buffer stays open for the life of
// the returned Dump.
//
// # Usage Example
//
//	loader := hprof.NewLoader(hprof.DefaultOptions())
//	dump, err := loader.Load(ctx, "app.hprof", buffer.KindMmap)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dump.Close()
//
//	for _, c := range dump.Snapshot.Classes() {
//	    fmt.Printf("%s: %d instances\n", c.Name(), c.InstancesCount(false))
//	}
package hprof
