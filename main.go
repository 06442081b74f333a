package main

import "github.com/shaharia-lab/apns-notifyd/cmd"

func main() {
	cmd.Execute()
}
