// Command hash-secret reads a secret from stdin and prints its bcrypt hash,
// for seeding users.secret_hash by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/config"
	"github.com/iliyamo/tenant-session-gateway/internal/logger"
	"github.com/iliyamo/tenant-session-gateway/internal/utils"
)

func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (default BCRYPT_COST or 12)")
	flag.Parse()

	config.LoadDotEnv()
	logger.Setup("warn", "console")

	if *cost == 0 {
		*cost = config.LoadBcryptCost()
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal().Err(err).Msg("read secret from stdin")
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		log.Fatal().Msg("empty secret")
	}

	hash, err := utils.HashSecret(secret, *cost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash secret")
	}
	fmt.Println(hash)
}
