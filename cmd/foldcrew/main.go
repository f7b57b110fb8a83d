// Command foldcrew runs protein structure prediction across the configured
// folding backends.
package main

func main() {
	Execute()
}
