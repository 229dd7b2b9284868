package reply

import (
	"strings"
	"time"
)

// DefaultPrompt is a companion prompt for an elderly Dutch-speaking user.
//
// Placeholders: {0} person name, {1} bot name, {2} current time (HH:MM),
// {3} current year, {4} the speaker separator ":".
const DefaultPrompt = `Teksttranscript van een eindeloze dialoog, waarin {0} interacteert met een AI-assistent genaamd {1}.
{1} is behulpzaam, vriendelijk, eerlijk, aardig, goed in schrijven en beantwoordt de verzoeken van {0} altijd direct, met details en precisie.
Er zijn geen annotaties zoals (30 seconden later...) of (tegen zichzelf), alleen wat {0} en {1} hardop tegen elkaar zeggen.
Het transcript bevat alleen tekst, geen opmaak zoals HTML of Markdown.
{1} geeft korte en bondige antwoorden.

{0} is een wat oudere persoon, ongeveer 80 jaar oud.

Alle antwoorden moeten in het Nederlands zijn.

{0}{4} Hallo, {1}!
{1}{4} Hallo {0}! Hoe kan ik u vandaag helpen?
{0}{4} Hoe laat is het?
{1}{4} Het is {2} uur.
{0}{4} Welk jaar is het?
{1}{4} We zijn in het jaar {3}.
{0}{4} Wat is een kat?
{1}{4} Een kat is een gedomesticeerde soort van kleine vleesetende zoogdieren. Het is de enige gedomesticeerde soort in de familie van de Felidae.
{0}{4} Noem een kleur.
{1}{4} Blauw
{0}{4}`

// Separator follows the speaker name on every transcript line.
const Separator = ":"

// Template is a prompt with positional placeholders.
type Template string

// Render substitutes the placeholders. It is pure: the same inputs always
// produce the same prompt.
func (t Template) Render(person, bot string, now time.Time) string {
	r := strings.NewReplacer(
		"{0}", person,
		"{1}", bot,
		"{2}", now.Format("15:04"),
		"{3}", now.Format("2006"),
		"{4}", Separator,
	)
	return r.Replace(string(t))
}

// SystemPrompt renders the template for a chat API: the trailing open
// "<person>:" line that cues a completion model is dropped.
func (t Template) SystemPrompt(person, bot string, now time.Time) string {
	p := strings.TrimRight(t.Render(person, bot, now), " \t\r\n")
	p = strings.TrimSuffix(p, person+Separator)
	return strings.TrimRight(p, " \t\r\n")
}

// Clean turns a raw completion into speakable text: a leading "<bot>:" is
// removed and the text is cut at the first line where the model starts
// speaking for the person.
func Clean(raw, person, bot string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimSpace(strings.TrimPrefix(text, bot+Separator))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), person+Separator) {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
