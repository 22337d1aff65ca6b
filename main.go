package main

import "github.com/mobiletoly/sqlitenow-go/cmd"

func main() {
	cmd.Execute()
}
