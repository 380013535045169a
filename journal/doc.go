// Package journal persists the device log.
//
// A Recorder drains a device log subscription into one or more sinks. Two sinks are
// provided: Store, an SQLite table accessed through GORM, and Encoder, a stream of
// CBOR records that Decoder reads back.
//
//	store, err := journal.Open(journal.Config{Path: "rig.db"}, nil)
//	...
//	_ = dev.Open(ctx, device.OpenOptions{LogDevice: true})
//	rec := journal.NewRecorder(dev.DeviceLog(), nil, store)
//	_ = rec.Start()
//	defer rec.Stop()
package journal
