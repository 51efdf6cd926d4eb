// Package bootloader provides the host side of the line-based flash loading
// protocol.
//
// # Overview
//
// A Programmer drives a device running the loader over any io.ReadWriter.
// Each command is one text line and is answered with one ACK or NACK token.
// Program runs the complete sequence for a firmware image:
//   - Erasing every sector the image touches
//   - Filling the device staging buffer with line-sized writes
//   - Committing each staged block to flash
//   - Ending the session
//
// # Basic Usage
//
//	port, err := transport.OpenSerial("/dev/ttyUSB0", 115200, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	img, err := image.Load(afero.NewOsFs(), "app.hex", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(port, bootloader.WithGeometry(flashdev.W25Q128))
//	if err := prog.Program(context.Background(), img); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d\n", p.Phase, p.Percentage, p.Current, p.Total)
//	    }),
//	)
//
// # Error Handling
//
// A NACK is retried up to the configured number of times, then reported as
// *protocol.ProtocolError. An image that does not fit the device is reported
// as *ImageRangeError before anything is sent.
//
// The device ACKs every well framed line, including erase and program
// commands its flash driver rejected. The protocol has no read back, so a
// failed program is only visible in the device log.
package bootloader
