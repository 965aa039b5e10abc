package main

import "github.com/ValentinKolb/fbkv/cmd"

func main() {
	cmd.Execute()
}
