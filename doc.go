/*
Package facecrop locates a single face in a still image and crops a square
portrait around it, framing the head and the upper body. The crop can be
cut out as a disk, with everything outside of it made transparent.

Faces are searched through an ordered chain of detectors: a neural face
model first, then a frontal and a profile cascade classifier. The chain
stops at the first acceptable detection. In strict mode only a confident
detection of the neural model is accepted.

The package provides a command line interface, supporting single images,
directories, URLs and pipes. To check the supported commands type:

	$ facecrop --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"
		"github.com/facecrop/facecrop"
	)

	func main() {
		p := &facecrop.Processor{
			Detector: facecrop.NewDetector(models),
			Circular: true,
		}

		if err := p.Process(in, out); err != nil {
			fmt.Printf("Error cropping image: %s", err.Error())
		}
	}
*/
package facecrop
