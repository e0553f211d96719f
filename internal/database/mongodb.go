package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MinServerVersion is the oldest server that accepts aggregation pipelines
// in update commands.
var MinServerVersion = [2]int{4, 2}

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// CheckServerVersion fails when the server behind db is older than
// MinServerVersion.
func CheckServerVersion(ctx context.Context, db *mongo.Database) (string, error) {
	var info struct {
		Version string `bson:"version"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		return "", fmt.Errorf("mongo buildInfo: %w", err)
	}
	major, minor, err := parseVersion(info.Version)
	if err != nil {
		return info.Version, err
	}
	if major < MinServerVersion[0] || (major == MinServerVersion[0] && minor < MinServerVersion[1]) {
		return info.Version, fmt.Errorf("mongo server %s is older than %d.%d", info.Version, MinServerVersion[0], MinServerVersion[1])
	}
	return info.Version, nil
}

func parseVersion(v string) (int, int, error) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("mongo server version %q: unexpected format", v)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("mongo server version %q: %w", v, err)
	}
	minor, err := strconv.Atoi(strings.TrimFunc(parts[1], func(r rune) bool { return r < '0' || r > '9' }))
	if err != nil {
		return 0, 0, fmt.Errorf("mongo server version %q: %w", v, err)
	}
	return major, minor, nil
}
