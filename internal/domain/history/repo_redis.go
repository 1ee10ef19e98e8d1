package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the list holding the ledger when no key is configured.
const DefaultRedisKey = "termbridge:translation_history"

// appendScript assigns the id from the list length and pushes the entry in
// one server-side step, so concurrent appends from any number of processes
// never share an id.
var appendScript = redis.NewScript(`
local n = redis.call('LLEN', KEYS[1]) + 1
local entry = cjson.decode(ARGV[1])
entry['id'] = string.format('TRANS_%04d', n)
redis.call('RPUSH', KEYS[1], cjson.encode(entry))
return entry['id']
`)

type ledgerRedis struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

// NewLedgerRedis returns a Ledger kept in a single Redis list.
func NewLedgerRedis(client redis.UniversalClient, key string) Ledger {
	if key == "" {
		key = DefaultRedisKey
	}
	return &ledgerRedis{client: client, key: key, now: time.Now}
}

func (r *ledgerRedis) Append(ctx context.Context, e Entry) (string, error) {
	e.ID = ""
	e.Timestamp = r.now().UTC()
	payload, err := json.Marshal(e)
	if err != nil {
		return "", storageErr("encode history entry", err)
	}

	id, err := appendScript.Run(ctx, r.client, []string{r.key}, string(payload)).Text()
	if err != nil {
		return "", storageErr("append history", err)
	}
	return id, nil
}

func (r *ledgerRedis) ListBy(ctx context.Context, abhaID string) ([]*Entry, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, storageErr("list history", err)
	}

	items := make([]*Entry, 0)
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, storageErr("decode history entry", err)
		}
		if e.ABHAID == abhaID {
			items = append(items, &e)
		}
	}
	return items, nil
}
