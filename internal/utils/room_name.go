package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var (
	roomAdjectives = []string{
		"amber", "brisk", "cosy", "dusty", "eager", "fuzzy", "gentle", "hazy", "jolly", "lucky",
		"mellow", "nimble", "plucky", "quiet", "rusty", "sunny", "tidy", "velvet", "witty", "zesty",
	}
	roomAnimals = []string{
		"otter", "panda", "koala", "heron", "lynx", "badger", "gecko", "walrus", "puffin", "marmot",
		"ferret", "narwhal", "toucan", "beaver", "alpaca", "bison", "crane", "dingo", "egret", "finch",
	}
	roomDishes = []string{
		"ramen", "taco", "waffle", "gnocchi", "falafel", "samosa", "pierogi", "paella", "dumpling", "curry",
		"fondue", "risotto", "poutine", "kebab", "crepe", "bagel", "churro", "mochi", "pretzel", "strudel",
	}
)

// RoomName returns a random, easy to read room name such as
// "plucky-otter-ramen".
func RoomName() string {
	return strings.Join([]string{
		pick(roomAdjectives),
		pick(roomAnimals),
		pick(roomDishes),
	}, "-")
}

func pick(words []string) string {
	return words[randomIndex(len(words))]
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("utils: random source failed: " + err.Error())
	}
	return int(n.Int64())
}
