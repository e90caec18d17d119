// Package xmltv writes XMLTV programme guides.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// TimeLayout is the XMLTV date format.
const TimeLayout = "20060102150405 -0700"

// Channel is a guide channel.
type Channel struct {
	ID          string
	DisplayName string
	Number      string
	Icon        string
}

// Programme is one guide entry.
type Programme struct {
	Channel     string
	Start       time.Time
	Stop        time.Time
	Title       string
	SubTitle    string
	Description string
	Categories  []string
	Language    string
}

type langText struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type icon struct {
	Src string `xml:"src,attr"`
}

type channelElement struct {
	XMLName      xml.Name   `xml:"channel"`
	ID           string     `xml:"id,attr"`
	DisplayNames []langText `xml:"display-name"`
	Icon         *icon      `xml:"icon,omitempty"`
}

type programmeElement struct {
	XMLName    xml.Name   `xml:"programme"`
	Start      string     `xml:"start,attr"`
	Stop       string     `xml:"stop,attr"`
	Channel    string     `xml:"channel,attr"`
	Title      langText   `xml:"title"`
	SubTitle   *langText  `xml:"sub-title,omitempty"`
	Desc       *langText  `xml:"desc,omitempty"`
	Categories []langText `xml:"category"`
}

// Writer streams an XMLTV document. Channels must precede programmes.
type Writer struct {
	enc           *xml.Encoder
	w             io.Writer
	generator     string
	headerWritten bool
	channelsDone  bool
}

// NewWriter creates a writer naming generator in the tv element.
func NewWriter(w io.Writer, generator string) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("  ", "  ")
	return &Writer{enc: enc, w: w, generator: generator}
}

// WriteHeader writes the XML declaration and opens the tv element.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if _, err := fmt.Fprintln(w.w, xml.Header[:len(xml.Header)-1]); err != nil {
		return fmt.Errorf("writing XML declaration: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "<tv generator-info-name=\"%s\">\n", xmlEscape(w.generator)); err != nil {
		return fmt.Errorf("writing tv element: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel writes a channel definition.
func (w *Writer) WriteChannel(ch *Channel) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if w.channelsDone {
		return fmt.Errorf("channels must be written before programmes")
	}

	el := channelElement{ID: ch.ID, DisplayNames: []langText{{Value: ch.DisplayName}}}
	if ch.Number != "" {
		el.DisplayNames = append(el.DisplayNames, langText{Value: ch.Number})
	}
	if ch.Icon != "" {
		el.Icon = &icon{Src: ch.Icon}
	}
	if err := w.enc.Encode(el); err != nil {
		return fmt.Errorf("writing channel %s: %w", ch.ID, err)
	}
	return nil
}

// WriteProgramme writes a programme entry.
func (w *Writer) WriteProgramme(p *Programme) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	w.channelsDone = true

	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	el := programmeElement{
		Start:   p.Start.Format(TimeLayout),
		Stop:    p.Stop.Format(TimeLayout),
		Channel: p.Channel,
		Title:   langText{Lang: lang, Value: p.Title},
	}
	if p.SubTitle != "" {
		el.SubTitle = &langText{Lang: lang, Value: p.SubTitle}
	}
	if p.Description != "" {
		el.Desc = &langText{Lang: lang, Value: p.Description}
	}
	for _, c := range p.Categories {
		el.Categories = append(el.Categories, langText{Lang: lang, Value: c})
	}
	if err := w.enc.Encode(el); err != nil {
		return fmt.Errorf("writing programme for %s: %w", p.Channel, err)
	}
	return nil
}

// WriteFooter closes the tv element.
func (w *Writer) WriteFooter() error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.enc.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w.w, "\n</tv>")
	return err
}

func xmlEscape(s string) string {
	var buf []byte
	_ = xml.EscapeText((*escapeBuffer)(&buf), []byte(s))
	return string(buf)
}

type escapeBuffer []byte

func (b *escapeBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
