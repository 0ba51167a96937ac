package domain

import (
	"encoding/json"
	"fmt"
)

// BlockType is the discriminator of a campaign document block.
type BlockType string

const (
	BlockHeader    BlockType = "header"
	BlockText      BlockType = "text"
	BlockImage     BlockType = "image"
	BlockImageText BlockType = "imagetext"
	BlockButton    BlockType = "button"
	BlockSpacer    BlockType = "spacer"
	BlockSocial    BlockType = "social"
	BlockNPS       BlockType = "nps"
)

// BlockContent is the variant-specific payload of a Block. Only the content
// types declared in this file implement it.
type BlockContent interface {
	BlockType() BlockType
}

// HeaderContent is a logo row, optionally linked.
type HeaderContent struct {
	URL      string `json:"url"`
	ImageURL string `json:"imageUrl"`
}

// TextContent holds editor-formatted HTML or plain text.
type TextContent struct {
	Text string `json:"text"`
}

// ImageContent is a full-width image, optionally linked.
type ImageContent struct {
	URL  string `json:"url"`
	Link string `json:"link"`
}

// ImageTextContent is an image beside a title and short text.
type ImageTextContent struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// ButtonContent is a single call-to-action anchor.
type ButtonContent struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// SpacerContent has no payload; the spacer is described by its Style.
type SpacerContent struct{}

// SocialContent lists profile URLs. Empty URLs are not rendered.
type SocialContent struct {
	Instagram string `json:"instagram"`
	LinkedIn  string `json:"linkedin"`
	Website   string `json:"website"`
}

// NPSContent is a 0-10 recommendation survey.
type NPSContent struct {
	Prompt    string `json:"prompt"`
	UseEmojis bool   `json:"useEmojis"`
}

func (HeaderContent) BlockType() BlockType    { return BlockHeader }
func (TextContent) BlockType() BlockType      { return BlockText }
func (ImageContent) BlockType() BlockType     { return BlockImage }
func (ImageTextContent) BlockType() BlockType { return BlockImageText }
func (ButtonContent) BlockType() BlockType    { return BlockButton }
func (SpacerContent) BlockType() BlockType    { return BlockSpacer }
func (SocialContent) BlockType() BlockType    { return BlockSocial }
func (NPSContent) BlockType() BlockType       { return BlockNPS }

// Style is the per-block presentation. Fields a variant does not use are
// ignored by the renderer.
type Style struct {
	Align           string `json:"align"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	Padding         int    `json:"padding"`
	FontSize        int    `json:"fontSize"`
	FontFamily      string `json:"fontFamily"`
	TextAlign       string `json:"textAlign,omitempty"`
	ButtonColor     string `json:"buttonColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	BorderRadius    int    `json:"borderRadius"`
	Width           string `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	ShowLine        bool   `json:"showLine,omitempty"`
	LineColor       string `json:"lineColor,omitempty"`
}

// Block is one row of a campaign document.
type Block struct {
	ID      string
	Style   Style
	Content BlockContent
}

// Type returns the block's discriminator.
func (b Block) Type() BlockType {
	if b.Content == nil {
		return ""
	}
	return b.Content.BlockType()
}

// NewBlock builds a block with the editor's default style for its variant.
func NewBlock(id string, content BlockContent) Block {
	return Block{ID: id, Style: DefaultStyle(content.BlockType()), Content: content}
}

// DefaultStyle returns the editor defaults for a block variant.
func DefaultStyle(t BlockType) Style {
	s := Style{BackgroundColor: "transparent", Padding: 20, Align: "center"}
	switch t {
	case BlockText:
		s.Color = "#333333"
		s.FontSize = 16
		s.FontFamily = "sans-serif"
		s.TextAlign = "left"
		s.Align = "left"
	case BlockButton:
		s.ButtonColor = "#8257e6"
		s.TextColor = "#ffffff"
		s.BorderRadius = 6
	case BlockSpacer:
		s.Height = 30
		s.ShowLine = true
		s.LineColor = "#e1e1e6"
		s.BackgroundColor = "#ffffff"
		s.Padding = 0
	case BlockImage:
		s.BorderRadius = 4
		s.Width = "100%"
	case BlockHeader:
		s.BackgroundColor = "#ffffff"
		s.Padding = 30
	case BlockImageText:
		s.BackgroundColor = "#ffffff"
		s.Color = "#333333"
	case BlockSocial:
		s.Color = "#8257e6"
		s.Padding = 15
	case BlockNPS:
		s.Padding = 24
	}
	return s
}

type blockWire struct {
	ID      string          `json:"id"`
	Type    BlockType       `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
	Style   json.RawMessage `json:"style,omitempty"`
}

// MarshalJSON encodes the block as {"id","type","content","style"}.
func (b Block) MarshalJSON() ([]byte, error) {
	if b.Content == nil {
		return nil, fmt.Errorf("block %q has no content", b.ID)
	}
	content, err := json.Marshal(b.Content)
	if err != nil {
		return nil, err
	}
	style, err := json.Marshal(b.Style)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blockWire{ID: b.ID, Type: b.Content.BlockType(), Content: content, Style: style})
}

// UnmarshalJSON decodes the wire form. Style fields missing from the payload
// keep the variant defaults; an unknown type is an error.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	t := w.Type
	if t == "imageText" {
		t = BlockImageText
	}

	var content BlockContent
	switch t {
	case BlockHeader:
		c := HeaderContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	case BlockText:
		c := TextContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	case BlockImage:
		c := ImageContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	case BlockImageText:
		c := ImageTextContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	case BlockButton:
		c := ButtonContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	case BlockSpacer:
		content = SpacerContent{}
	case BlockSocial:
		c := SocialContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	case BlockNPS:
		c := NPSContent{}
		if err := decodeContent(w.Content, &c); err != nil {
			return err
		}
		content = c
	default:
		return fmt.Errorf("unknown block type %q", w.Type)
	}

	style := DefaultStyle(t)
	if len(w.Style) > 0 && string(w.Style) != "null" {
		if err := json.Unmarshal(w.Style, &style); err != nil {
			return fmt.Errorf("block %q style: %w", w.ID, err)
		}
	}

	b.ID = w.ID
	b.Style = style
	b.Content = content
	return nil
}

func decodeContent(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("block content: %w", err)
	}
	return nil
}
