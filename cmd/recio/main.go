// Command recio reads framed record files and merges sorted runs.
//
//	recio cat part-0000.rec.gz part-0001.rec.gz
//	recio cat --format prefix --unique s3://bucket/runs/
//	recio count --fixed 16 --format fixed data.bin
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
