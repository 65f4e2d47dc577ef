// Command verify recomputes a dice roll from a revealed server seed so a
// player can check a result offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("verify: ")

	var (
		serverSeed = flag.String("server-seed", "", "revealed server seed (hex)")
		hash       = flag.String("hash", "", "server seed hash committed before the bet")
		clientSeed = flag.String("client-seed", "", "client seed used for the bet")
		nonce      = flag.Uint64("nonce", 0, "bet nonce")
		betType    = flag.String("bet-type", "", "classic, specific, odd-even or range")
		betOption  = flag.String("bet-option", "", "option for the bet type")
		expectRoll = flag.Int("expect-roll", 0, "fail unless the recomputed roll equals this value")
		asJSON     = flag.Bool("json", false, "print the result as JSON")
	)
	flag.Parse()

	result, err := services.Verify(&models.VerifyRequest{
		ServerSeed:     *serverSeed,
		ServerSeedHash: *hash,
		ClientSeed:     *clientSeed,
		Nonce:          nonce,
		BetType:        *betType,
		BetOption:      models.FlexString(*betOption),
	})
	if err != nil {
		log.Fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal(err)
		}
	} else {
		fmt.Printf("roll:        %d\n", result.Roll)
		fmt.Printf("hash valid:  %t\n", result.HashMatches)
		fmt.Printf("bet:         %s %s\n", result.BetType, result.BetOption)
		fmt.Printf("outcome:     %s\n", result.Outcome)
	}

	if !result.HashMatches {
		os.Exit(1)
	}
	if *expectRoll != 0 && *expectRoll != result.Roll {
		fmt.Fprintf(os.Stderr, "roll mismatch: expected %d, recomputed %d\n", *expectRoll, result.Roll)
		os.Exit(1)
	}
}
