package main

import "github.com/nexapay/settled/internal/cli"

func main() {
	cli.Execute()
}
