package main

import "github.com/contenox/chatlog/internal/chatlogcli"

func main() {
	chatlogcli.Main()
}
