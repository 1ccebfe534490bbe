package menu

import "noelle/internal/domain"

// Menu ids known to the renderer.
const (
	ConversationItem = "conversation-item"
	ConversationList = "conversation-list"
	MessageItem      = "message-item"
)

var separator = domain.MenuItem{Type: domain.MenuSeparator}

// Templates returns the built-in context menus keyed by id.
func Templates() map[string][]domain.MenuItem {
	return map[string][]domain.MenuItem{
		ConversationItem: {
			{ID: "pin", Label: "menu.conversation.pinConversation"},
			{ID: "rename", Label: "menu.conversation.renameConversation"},
			{ID: "del", Label: "menu.conversation.delConversation"},
		},
		ConversationList: {
			{ID: "newConversation", Label: "menu.conversation.newConversation"},
			separator,
			{ID: "sortBy", Type: domain.MenuSubmenu, Label: "menu.conversation.sortBy", Submenu: []domain.MenuItem{
				{ID: "sortByCreateTime", Type: domain.MenuRadio, Label: "menu.conversation.sortByCreateTime"},
				{ID: "sortByUpdateTime", Type: domain.MenuRadio, Label: "menu.conversation.sortByUpdateTime"},
				{ID: "sortByName", Type: domain.MenuRadio, Label: "menu.conversation.sortByName"},
				{ID: "sortByModel", Type: domain.MenuRadio, Label: "menu.conversation.sortByModel"},
				separator,
				{ID: "sortAscending", Type: domain.MenuRadio, Label: "menu.conversation.sortAscending"},
				{ID: "sortDescending", Type: domain.MenuRadio, Label: "menu.conversation.sortDescending"},
			}},
			{ID: "batchOperations", Label: "menu.conversation.batchOperations"},
		},
		MessageItem: {
			{ID: "copy", Label: "menu.message.copyMessage"},
			{ID: "select", Label: "menu.message.selectMessage"},
			separator,
			{ID: "delete", Label: "menu.message.deleteMessage"},
		},
	}
}
