package textproc

import (
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
	"github.com/rs/zerolog/log"
)

// Tokenizer 把文本切成检索用的词项。中文走 gse 分词，gse 初始化失败时退化为按非字母数字切分
type Tokenizer struct {
	once      sync.Once
	segmenter *gse.Segmenter
}

// NewTokenizer 创建分词器，词典在第一次使用时加载
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

func (t *Tokenizer) load() {
	t.once.Do(func() {
		segmenter, err := gse.New()
		if err != nil {
			log.Warn().Err(err).Msg("gse 分词器初始化失败，使用简单切分")
			return
		}
		t.segmenter = &segmenter
	})
}

// Terms 返回去重、小写后的词项，保持首次出现的顺序，丢弃单个 ASCII 字符和纯标点
func (t *Tokenizer) Terms(s string) []string {
	t.load()

	var words []string
	if t.segmenter != nil {
		words = t.segmenter.Cut(s, false)
	} else {
		words = strings.FieldsFunc(s, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
	}

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if w == "" || seen[w] {
			continue
		}
		if len([]rune(w)) == 1 && w[0] < unicode.MaxASCII {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// Overlap 统计 query 中有多少词项出现在 terms 中
func Overlap(query, terms []string) int {
	if len(query) == 0 || len(terms) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	n := 0
	for _, q := range query {
		if _, ok := set[q]; ok {
			n++
		}
	}
	return n
}
