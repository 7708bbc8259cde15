package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"StockKeeper/internal/operator"
	"StockKeeper/pkg/kit"
)

// Reads the operator password from stdin and prints the bcrypt hash to use
// as OPERATOR_PASSWORD_HASH.
func main() {
	log := kit.NewConsoleLogger("hashpw")
	defer func() { _ = log.Sync() }()

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal("read password", zap.Error(err))
	}

	pw := strings.TrimRight(line, "\r\n")
	if len(pw) < 8 {
		log.Fatal("password too short", zap.Int("min_len", 8))
	}

	hash, err := operator.HashPassword(pw)
	if err != nil {
		log.Fatal("hash password", zap.Error(err))
	}
	fmt.Println(string(hash))
}
