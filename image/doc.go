// Package image loads firmware images for the host programmer.
//
// Two formats are supported:
//   - Intel HEX (.hex, .ihex, .ihx), with extended segment and extended
//     linear addressing
//   - raw binary, placed at a caller supplied base address
//
// Files are read through an afero.Fs so that tests and tools can work on
// in-memory file systems.
//
// Example:
//
//	img, err := image.Load(afero.NewOsFs(), "app.hex", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	start, end := img.Bounds()
//	fmt.Printf("image covers 0x%X-0x%X\n", start, end)
package image
