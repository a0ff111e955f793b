package loam

// SceneMetadata is the frontmatter of a seed document.
//
//	---
//	id: lobby
//	version: 1
//	root:
//	  id: root
//	  children:
//	    - id: door
//	      fields:
//	        open: {type: bool, value: false}
//	        position: {type: vec3, value: [1, 0, 2.5]}
//	---
type SceneMetadata struct {
	ID      string       `json:"id" mapstructure:"id"`
	Version int64        `json:"version" mapstructure:"version"`
	Root    NodeMetadata `json:"root" mapstructure:"root"`
}

// NodeMetadata describes one node of a seed scene.
type NodeMetadata struct {
	ID       string                   `json:"id" mapstructure:"id"`
	Fields   map[string]FieldMetadata `json:"fields" mapstructure:"fields"`
	Children []NodeMetadata           `json:"children" mapstructure:"children"`
}

// FieldMetadata is a typed field. Value may be written as the wire string or
// as a native YAML scalar; vectors and colors also accept a list.
type FieldMetadata struct {
	Type  string `json:"type" mapstructure:"type"`
	Value any    `json:"value" mapstructure:"value"`
}
