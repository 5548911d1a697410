package record

import "github.com/jgivc/browsersync/internal/entity"

func toConsumer(s string) entity.ConsumerID {
	return entity.ConsumerID(s)
}

func toStrings(consumers []entity.ConsumerID) []string {
	out := make([]string, 0, len(consumers))
	for _, c := range consumers {
		out = append(out, string(c))
	}

	return out
}
