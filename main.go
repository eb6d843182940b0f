package main

import "github.com/agubarev/chapi/cmd"

func main() {
	cmd.Execute()
}
