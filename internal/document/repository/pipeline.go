package repository

import (
	"reflect"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

// Aggregation expressions for pipeline updates. The diff is evaluated by the
// server against $$ROOT, the document as it is at write time, so computing it
// and storing it happen in the same atomic update.

// literal keeps user values from being read as field paths or operators.
// Values are canonicalized first, so the same value always encodes the same
// way.
func literal(v any) bson.M {
	return bson.M{"$literal": canonical(v)}
}

// canonical turns maps, at any depth, into documents with sorted keys. The
// server compares embedded documents field by field in order, so a map
// encoded in iteration order would differ from its own stored copy.
func canonical(v any) any {
	if d, ok := v.(bson.D); ok {
		out := make(bson.D, len(d))
		for i, e := range d {
			out[i] = bson.E{Key: e.Key, Value: canonical(e.Value)}
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return v
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := make(bson.D, 0, len(keys))
		for _, k := range keys {
			out = append(out, bson.E{Key: k.String(), Value: canonical(rv.MapIndex(k).Interface())})
		}
		return out
	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make(bson.A, rv.Len())
		for i := range out {
			out[i] = canonical(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// pairs renders fields as [[k, v], ...].
func pairs(fields map[string]any) bson.A {
	out := bson.A{}
	for _, k := range sortedKeys(fields) {
		out = append(out, bson.A{k, literal(fields[k])})
	}
	return out
}

// markers renders keys as [[k, null], ...].
func markers(keys []string) bson.A {
	out := bson.A{}
	for _, k := range keys {
		out = append(out, bson.A{k, nil})
	}
	return out
}

// objectToArray renders the fields of obj as [[k, v], ...].
func objectToArray(obj string) bson.M {
	return bson.M{"$map": bson.M{
		"input": bson.M{"$objectToArray": obj},
		"in":    bson.A{"$$this.k", "$$this.v"},
	}}
}

// objectToMarkers renders the field names of obj as [[k, null], ...].
func objectToMarkers(obj string) bson.M {
	return bson.M{"$map": bson.M{
		"input": bson.M{"$objectToArray": obj},
		"in":    bson.A{"$$this.k", nil},
	}}
}

// withoutFields drops the pairs of expr whose key is in exclude.
func withoutFields(expr any, exclude []string) bson.M {
	return bson.M{"$filter": bson.M{
		"input": expr,
		"cond": bson.M{"$not": bson.A{
			bson.M{"$in": bson.A{bson.M{"$arrayElemAt": bson.A{"$$this", 0}}, exclude}},
		}},
	}}
}

// arrayToObject merges pair arrays into one document.
func arrayToObject(entries ...string) bson.M {
	objs := bson.A{}
	for _, e := range entries {
		objs = append(objs, bson.M{"$arrayToObject": e})
	}
	return bson.M{"$mergeObjects": objs}
}

// push appends item to the array at path, treating a missing array as empty.
func push(path string, item any) bson.M {
	return bson.M{"$concatArrays": bson.A{
		bson.M{"$ifNull": bson.A{path, bson.A{}}},
		bson.A{item},
	}}
}

// historyEntry is the expression of one history entry stamped with the
// server clock. Unset attribution is left out.
func historyEntry(actor history.Actor, diff any) bson.D {
	entry := bson.D{}
	if actor.Author != nil {
		entry = append(entry, bson.E{Key: "author", Value: literal(*actor.Author)})
	}
	if actor.User != "" {
		entry = append(entry, bson.E{Key: "user", Value: literal(actor.User)})
	}
	return append(entry,
		bson.E{Key: "date", Value: "$$NOW"},
		bson.E{Key: "diff", Value: diff},
	)
}

// appendHistory appends an entry for the removed and changed pairs when
// either is non-empty and leaves history untouched otherwise.
func appendHistory(deleted, updated any, actor history.Actor) bson.M {
	return bson.M{"$let": bson.M{
		"vars": bson.M{"deleted": deleted, "updated": updated},
		"in": bson.M{"$cond": bson.M{
			"if": bson.M{"$or": bson.A{
				bson.M{"$size": "$$deleted"},
				bson.M{"$size": "$$updated"},
			}},
			"then": push("$"+history.FieldHistory, historyEntry(actor, arrayToObject("$$deleted", "$$updated"))),
			"else": "$" + history.FieldHistory,
		}},
	}}
}

func replacePipeline(body map[string]any, actor history.Actor) mongo.Pipeline {
	deleted := bson.M{"$setDifference": bson.A{
		withoutFields(objectToMarkers("$$ROOT"), history.ReservedFields),
		markers(sortedKeys(body)),
	}}
	updated := bson.M{"$setDifference": bson.A{
		pairs(body),
		objectToArray("$$ROOT"),
	}}
	keep := bson.D{}
	for _, f := range history.ReservedFields {
		keep = append(keep, bson.E{Key: f, Value: "$" + f})
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: history.FieldHistory, Value: appendHistory(deleted, updated, actor)}}}},
		{{Key: "$replaceWith", Value: bson.M{"$mergeObjects": bson.A{keep, literal(body)}}}},
	}
}

func updatePipeline(set map[string]any, unset []string, actor history.Actor) mongo.Pipeline {
	deleted := bson.M{"$setIntersection": bson.A{
		markers(unset),
		objectToMarkers("$$ROOT"),
	}}
	updated := bson.M{"$setDifference": bson.A{
		pairs(set),
		objectToArray("$$ROOT"),
	}}
	p := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: history.FieldHistory, Value: appendHistory(deleted, updated, actor)}}}},
	}
	if len(set) > 0 {
		fields := bson.D{}
		for _, k := range sortedKeys(set) {
			fields = append(fields, bson.E{Key: k, Value: literal(set[k])})
		}
		p = append(p, bson.D{{Key: "$set", Value: fields}})
	}
	if len(unset) > 0 {
		p = append(p, bson.D{{Key: "$unset", Value: unset}})
	}
	return p
}

func deletedPipeline(state bool, actor history.Actor) mongo.Pipeline {
	diff := bson.D{{Key: history.FieldDeleted, Value: state}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: history.FieldHistory, Value: bson.M{"$cond": bson.M{
			"if":   bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$" + history.FieldDeleted, false}}, state}},
			"then": "$" + history.FieldHistory,
			"else": push("$"+history.FieldHistory, historyEntry(actor, diff)),
		}}}}}},
		{{Key: "$set", Value: bson.D{{Key: history.FieldDeleted, Value: state}}}},
	}
}
