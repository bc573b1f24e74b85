package hub

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which users are connected to each group's channel in a
// Redis set, so the REST API can report who is online. Failures are logged
// and swallowed: presence is advisory, never load-bearing.
type Presence struct {
	rdb *redis.Client
}

func NewPresence(addr string) *Presence {
	return &Presence{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func presenceKey(groupID int64) string {
	return fmt.Sprintf("group:%d:users", groupID)
}

func (p *Presence) Join(ctx context.Context, groupID, userID int64) {
	if err := p.rdb.SAdd(ctx, presenceKey(groupID), userID).Err(); err != nil {
		log.Printf("presence: add user %d to group %d: %v", userID, groupID, err)
	}
}

func (p *Presence) Leave(ctx context.Context, groupID, userID int64) {
	if err := p.rdb.SRem(ctx, presenceKey(groupID), userID).Err(); err != nil {
		log.Printf("presence: remove user %d from group %d: %v", userID, groupID, err)
	}
}

// Users lists the user ids currently connected to a group's channel.
func (p *Presence) Users(ctx context.Context, groupID int64) ([]string, error) {
	return p.rdb.SMembers(ctx, presenceKey(groupID)).Result()
}

func (p *Presence) Close() error {
	return p.rdb.Close()
}
