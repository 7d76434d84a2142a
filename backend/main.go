// Command backend seeds the board membership sets the relay checks at
// admission. It stands in for the board CRUD service during local testing:
//
//	go run ./backend -board b1 -add alice -add bob
//	go run ./backend -board b1 -remove bob
//	go run ./backend -board b1 -list
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	var add, remove stringList
	board := flag.String("board", "", "board ID to operate on")
	keyPrefix := flag.String("prefix", "board:members:", "membership set key prefix, must match the relay config")
	list := flag.Bool("list", false, "print the board's members")
	flag.Var(&add, "add", "user ID to add as a member (repeatable)")
	flag.Var(&remove, "remove", "user ID to remove (repeatable)")
	flag.Parse()

	if *board == "" {
		log.Fatal("-board is required")
	}

	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	key := *keyPrefix + *board

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", redisAddr, err)
	}

	for _, userID := range add {
		if err := rdb.SAdd(ctx, key, userID).Err(); err != nil {
			log.Fatalf("failed to add %s: %v", userID, err)
		}
		log.Printf("added %s to %s", userID, key)
	}

	for _, userID := range remove {
		if err := rdb.SRem(ctx, key, userID).Err(); err != nil {
			log.Fatalf("failed to remove %s: %v", userID, err)
		}
		log.Printf("removed %s from %s", userID, key)
	}

	if *list {
		members, err := rdb.SMembers(ctx, key).Result()
		if err != nil {
			log.Fatalf("failed to list members: %v", err)
		}
		for _, m := range members {
			fmt.Println(m)
		}
	}
}
