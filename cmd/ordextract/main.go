package main

import (
	"log"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/socheatsok78/ordextract"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := ordextract.Run(); err != nil {
		log.Fatal(err)
	}
}
