package main

import (
	"fmt"

	_ "github.com/liftlog/routinecache/cache"
	_ "github.com/liftlog/routinecache/envelope"
	_ "github.com/liftlog/routinecache/eventing"
	_ "github.com/liftlog/routinecache/logger"
	_ "github.com/liftlog/routinecache/routine"
	_ "github.com/liftlog/routinecache/source"
	_ "github.com/liftlog/routinecache/store"
)

func main() {
	fmt.Println("Hi")
}
