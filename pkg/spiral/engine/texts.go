package engine

// Fixed user-facing texts. Kept in Traditional Chinese to match the corpus
// language; callers surface them verbatim.
const (
	scopeRefusalText = "很抱歉，本系統僅處理中醫辨證相關的健康諮詢。" +
		"請描述您的身體症狀，例如睡眠、飲食、二便、情緒等方面的不適。"

	safetyRefusalText = "抱歉，無法提供本輪診斷結果。\n" +
		"請重新描述您的症狀，使用日常語言即可。"

	insufficiencyNotice = "強制收斂警告：因提供的資訊不足且已達最大輪次，" +
		"本診斷結果的準確性較低，僅屬初步判斷。強烈建議您儘快尋求專業中醫師協助。"

	disclaimerText = "【重要聲明】\n" +
		"本診斷結果僅供參考，不能替代專業中醫師的面診。\n" +
		"請務必諮詢合格的中醫師進行確診和治療。\n" +
		"如有急症或嚴重不適，請立即就醫。"
)
