package main

import "github.com/jeremysinger/cheribuild/internal/cheribuild"

func main() {
	cheribuild.Main()
}
