package faq

// Question 是一个可一键发送的常见问题。
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Seed provides the predefined analytics shortcuts shown next to the input box.
func Seed() []Question {
	return []Question{
		{ID: "monthly-meetings", Text: "Show the monthly distribution of meetings?"},
		{ID: "customer-loyalty", Text: "Do a Customer Loyalty and Value Analysis. Who are our top 10 customers by order value, and how many meetings have we had with them?"},
		{ID: "high-value-customers", Text: "Find customers who have placed orders with a total value exceeding $10,000"},
		{ID: "daily-sales", Text: "Provide the daily sales trend"},
		{ID: "top-products", Text: "Identify the top 5 products by sales volume"},
		{ID: "diverse-customers", Text: "Identify customers who have ordered the most diverse range of products"},
		{ID: "online-customer-calls", Text: "Which meetings involve Customer Calls and are delivered Online?"},
		{ID: "monthly-sales", Text: "Provide the Monthly sales trend"},
	}
}

// Source 是处理器与 CLI 读取常见问题的接口。
type Source interface {
	List() []Question
	Lookup(id string) (Question, bool)
}

// Catalog keeps questions in display order with an index by id.
type Catalog struct {
	questions []Question
	index     map[string]int
}

// NewCatalog 复制 questions 建立目录，重复标识以首次出现为准。
func NewCatalog(questions []Question) *Catalog {
	c := &Catalog{
		questions: append([]Question(nil), questions...),
		index:     make(map[string]int, len(questions)),
	}
	for i, q := range c.questions {
		if _, dup := c.index[q.ID]; !dup {
			c.index[q.ID] = i
		}
	}
	return c
}

// List 返回副本，调用方修改不影响目录。
func (c *Catalog) List() []Question {
	return append([]Question(nil), c.questions...)
}

func (c *Catalog) Lookup(id string) (Question, bool) {
	i, ok := c.index[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}
