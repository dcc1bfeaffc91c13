// galileoctl reads a captured Galileosky byte stream from a file (or stdin)
// and writes a readable decode of every frame and record to stdout,
// without opening a socket or touching a Sink. It's the offline
// counterpart to the gateway binary - useful for replaying a firmware
// capture while developing the tag dictionary or the framer.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/galileosky/ingest-gateway/records"
	"github.com/galileosky/ingest-gateway/wire"
)

func main() {
	form := flag.String("form", "main", "record form to decode: main, compressed, type33")
	validateChecksum := flag.Bool("validate-checksum", true, "reject frames with a bad CRC-16")
	flag.Parse()

	var reader io.Reader
	fileName := flag.Arg(0)
	if fileName == "" || fileName == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(fileName)
		if err != nil {
			log.Fatalf("galileoctl: cannot open %s: %v", fileName, err)
		}
		defer f.Close()
		reader = f
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		log.Fatalf("galileoctl: read failed: %v", err)
	}

	framer := wire.NewFramer(wire.DefaultMaxPacketSize, *validateChecksum)
	framer.Feed(data)

	parser := records.NewParser()
	ctx := records.NewParserContext()

	frameNum := 0
	framer.Drain(
		func(frame *wire.Frame) {
			frameNum++
			fmt.Printf("frame %d: %s\n", frameNum, frame)

			recs, errs := decode(parser, ctx, *form, frame.Payload)
			for _, e := range errs {
				fmt.Printf("  parse error: %v\n", e)
			}
			for i, rec := range recs {
				fmt.Printf("  record %d: imei=%s inherited=%t entries=%d\n",
					i, rec.IMEI, rec.IMEIInherited, len(rec.Entries))
				for _, e := range rec.Entries {
					fmt.Printf("    tag 0x%04x = %v\n", e.ID, e.Value)
				}
			}
		},
		func(ferr *wire.FramingError) {
			fmt.Printf("framing error: %v\n", ferr)
		},
	)

	fmt.Printf("%d frames decoded, %d bytes left unconsumed\n", frameNum, framer.Buffered())
}

func decode(p *records.Parser, ctx *records.ParserContext, form string, payload []byte) ([]*records.Record, []error) {
	switch form {
	case "compressed":
		return p.ParseCompressed(ctx, payload)
	case "type33":
		return p.ParseType33(ctx, payload)
	default:
		return p.ParseMain(ctx, payload)
	}
}
