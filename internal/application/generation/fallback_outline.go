package generation

import (
	"fmt"
	"strings"

	wfmodel "content-gen-api/internal/workflow/model"
)

const (
	fallbackMinSections = 3
	fallbackMaxSections = 7
	wordsPerSection     = 250
	readingWordsPerMin  = 200
)

// FallbackOutline 只依据请求字段构造结构合法的大纲，不调用模型，不会失败
func FallbackOutline(req *GenerationRequest) *wfmodel.Outline {
	topic := strings.TrimSpace(req.Topic)
	wordCount := req.WordCount
	if wordCount <= 0 {
		wordCount = minWordCount
	}

	n := wordCount / wordsPerSection
	if n < fallbackMinSections {
		n = fallbackMinSections
	}
	if n > fallbackMaxSections {
		n = fallbackMaxSections
	}

	titles := fallbackTitles(req, n)
	sections := make([]wfmodel.Section, 0, n)
	per := wordCount / n
	for i, title := range titles {
		words := per
		if i == n-1 {
			words = wordCount - per*(n-1)
		}
		sections = append(sections, wfmodel.Section{
			Title:           wfmodel.FlexString(title),
			TargetWordCount: wfmodel.FlexInt(words),
			KeyPoints:       fallbackKeyPoints(req, i, n),
			HumanElement:    wfmodel.FlexString(fmt.Sprintf("Relate this to a situation %s commonly face.", req.Audience)),
		})
	}

	primary := topic
	var secondary []string
	if len(req.Keywords) > 0 {
		primary = req.Keywords[0]
		secondary = append(secondary, req.Keywords[1:]...)
	}

	minutes := (wordCount + readingWordsPerMin - 1) / readingWordsPerMin
	return &wfmodel.Outline{
		Metadata: wfmodel.OutlineMetadata{
			EstimatedReadingTime: wfmodel.FlexString(fmt.Sprintf("%d min", minutes)),
			TargetEmotion:        wfmodel.FlexString("confident"),
			ValueProposition:     wfmodel.FlexString(fmt.Sprintf("A practical overview of %s for %s.", topic, req.Audience)),
		},
		Sections: sections,
		SEOStrategy: wfmodel.SEOStrategy{
			PrimaryKeyword:    wfmodel.FlexString(primary),
			SecondaryKeywords: secondary,
			MetaDescription:   wfmodel.FlexString(truncateRunes(fmt.Sprintf("%s: what %s in %s need to know.", topic, req.Audience, req.Industry), 155)),
		},
		Conclusion: wfmodel.Conclusion{
			Summary:      wfmodel.FlexString(fmt.Sprintf("Recap the key ideas about %s.", topic)),
			CallToAction: wfmodel.FlexString("Invite the reader to apply one idea this week."),
		},
	}
}

func fallbackTitles(req *GenerationRequest, n int) []string {
	titles := make([]string, 0, n)
	titles = append(titles, fmt.Sprintf("Introduction: Why %s Matters", req.Topic))

	body := []string{
		fmt.Sprintf("Understanding %s", req.Topic),
		fmt.Sprintf("Key Challenges for %s", req.Audience),
		fmt.Sprintf("Practical Strategies in %s", req.Industry),
		"Common Mistakes to Avoid",
		"Real-World Examples",
		"Measuring Results",
	}
	for _, kw := range req.Keywords {
		if len(titles)+1 >= n {
			break
		}
		titles = append(titles, fmt.Sprintf("%s Explained", upperFirst(kw)))
	}
	for _, t := range body {
		if len(titles)+1 >= n {
			break
		}
		titles = append(titles, t)
	}
	return append(titles, "Conclusion and Next Steps")
}

func fallbackKeyPoints(req *GenerationRequest, i, n int) wfmodel.StringList {
	switch i {
	case 0:
		return wfmodel.StringList{
			fmt.Sprintf("Set the context for %s", req.Audience),
			"State what the reader will learn",
		}
	case n - 1:
		return wfmodel.StringList{"Summarize the main takeaways", "Give a clear next step"}
	default:
		points := wfmodel.StringList{"Explain the core idea with a concrete example", "Offer an actionable tip"}
		if len(req.Keywords) > 0 {
			points = append(points, fmt.Sprintf("Naturally reference %q", req.Keywords[(i-1)%len(req.Keywords)]))
		}
		return points
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
