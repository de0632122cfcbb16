package main

import "github.com/samsaffron/streamchat/cmd"

func main() {
	cmd.Execute()
}
