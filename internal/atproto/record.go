package atproto

import "encoding/json"

// Lexicon shapes for an app.bsky.feed.post record. Only the fields this
// service writes are modeled.

type feedPost struct {
	Type      string      `json:"$type"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	Facets    []facet     `json:"facets,omitempty"`
	Embed     interface{} `json:"embed,omitempty"`
	Reply     *replyRef   `json:"reply,omitempty"`
}

type facet struct {
	Index    byteSlice      `json:"index"`
	Features []facetFeature `json:"features"`
}

type byteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type facetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

type strongRef struct {
	CID string `json:"cid"`
	URI string `json:"uri"`
}

type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

type imagesEmbed struct {
	Type   string       `json:"$type"`
	Images []embedImage `json:"images"`
}

type embedImage struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

type externalEmbed struct {
	Type     string       `json:"$type"`
	External externalCard `json:"external"`
}

type externalCard struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
