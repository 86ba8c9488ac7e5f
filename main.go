package main

import "github.com/ValentinKolb/dRec/cmd"

func main() {
	cmd.Execute()
}
