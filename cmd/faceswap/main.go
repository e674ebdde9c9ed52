// Command faceswap runs the swap pipeline on local files without the HTTP
// server.
package main

func main() {
	Execute()
}
