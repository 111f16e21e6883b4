package main

import "github.com/omnidesk/channeledge/cmd"

func main() {
	cmd.Execute()
}
